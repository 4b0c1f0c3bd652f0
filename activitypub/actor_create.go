// Local actor bootstrap. Not a client API — just the minimum operation
// needed to provision a local actor with a keypair and credentials before
// the federation engine has anyone to federate on behalf of.
package activitypub

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kibouhq/kibou/domain"
	"github.com/kibouhq/kibou/errs"
	"github.com/kibouhq/kibou/util"
)

// passwordHashCost is the minimum bcrypt cost for stored credentials.
const passwordHashCost = 10

// CreateLocalActor generates an RSA keypair, hashes password, and inserts a
// new local actor at baseURL + "/actors/" + preferredUsername.
func CreateLocalActor(db Database, baseURL, preferredUsername, displayName, email, password string) (*domain.Actor, error) {
	if !util.IsValidPreferredUsername(preferredUsername) {
		return nil, errs.Validationf("create_local_actor: invalid preferredUsername %q", preferredUsername)
	}
	if len(password) == 0 {
		return nil, errs.Validationf("create_local_actor: password required")
	}

	if _, err := db.ActorByPreferredUsernameLocal(preferredUsername); err == nil {
		return nil, errs.Conflictf("create_local_actor: %q already taken", preferredUsername)
	} else if errs.KindOf(err) != errs.NotFound {
		return nil, err
	}

	keys, err := util.GeneratePemKeypair()
	if err != nil {
		return nil, errs.Wrap(errs.Fatal, "create_local_actor: generate keypair", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		return nil, errs.Wrap(errs.Fatal, "create_local_actor: hash password", err)
	}

	uri := baseURL + "/actors/" + preferredUsername
	now := time.Now()
	return db.ActorInsert(&domain.Actor{
		URI:                uri,
		PreferredUsername:  preferredUsername,
		DisplayName:        displayName,
		Inbox:              uri + "/inbox",
		Keys:               domain.Keys{PublicKeyPem: keys.Public, PrivateKeyPem: keys.Private},
		Local:              true,
		Email:              email,
		PasswordHash:       string(hash),
		CreatedAt:          now,
		ModifiedAt:         now,
	})
}
