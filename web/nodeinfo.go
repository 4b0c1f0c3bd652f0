package web

import (
	"encoding/json"
	"log"

	"github.com/kibouhq/kibou/activitypub"
	"github.com/kibouhq/kibou/util"
)

// NodeInfo20 is the NodeInfo 2.0 schema (https://nodeinfo.diaspora.software/schema.html).
type NodeInfo20 struct {
	Version           string           `json:"version"`
	Software          NodeInfoSoftware `json:"software"`
	Protocols         []string         `json:"protocols"`
	Services          NodeInfoServices `json:"services"`
	OpenRegistrations bool             `json:"openRegistrations"`
	Usage             NodeInfoUsage    `json:"usage"`
	Metadata          NodeInfoMetadata `json:"metadata"`
}

type NodeInfoSoftware struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type NodeInfoServices struct {
	Inbound  []string `json:"inbound"`
	Outbound []string `json:"outbound"`
}

type NodeInfoUsage struct {
	Users      NodeInfoUsers `json:"users"`
	LocalPosts int           `json:"localPosts"`
}

type NodeInfoUsers struct {
	Total int `json:"total"`
}

type NodeInfoMetadata struct {
	NodeName        string `json:"nodeName"`
	NodeDescription string `json:"nodeDescription"`
}

type WellKnownNodeInfo struct {
	Links []NodeInfoLink `json:"links"`
}

type NodeInfoLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// BuildNodeInfo20 gathers usage statistics and assembles the NodeInfo 2.0
// document, the discovery surface every NodeInfo-aware crawler and admin
// dashboard expects.
func BuildNodeInfo20(db activitypub.Database, conf *util.AppConfig) *NodeInfo20 {
	totalActors, err := db.CountLocalActors()
	if err != nil {
		log.Printf("nodeinfo: count local actors: %v", err)
	}
	localPosts, err := db.CountLocalCreateNoteActivities()
	if err != nil {
		log.Printf("nodeinfo: count local posts: %v", err)
	}

	return &NodeInfo20{
		Version: "2.0",
		Software: NodeInfoSoftware{
			Name:    util.Name,
			Version: util.GetVersion(),
		},
		Protocols: []string{"activitypub"},
		Services:  NodeInfoServices{Inbound: []string{}, Outbound: []string{}},
		Usage: NodeInfoUsage{
			Users:      NodeInfoUsers{Total: totalActors},
			LocalPosts: localPosts,
		},
		OpenRegistrations: conf.Conf.Node.RegistrationsEnabled,
		Metadata: NodeInfoMetadata{
			NodeName:        conf.Conf.Node.Name,
			NodeDescription: conf.Conf.Node.Description,
		},
	}
}

func MarshalNodeInfo20(n *NodeInfo20) string {
	b, err := json.Marshal(n)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// BuildWellKnownNodeInfo returns the /.well-known/nodeinfo discovery
// document pointing at the 2.0 endpoint.
func BuildWellKnownNodeInfo(conf *util.AppConfig) string {
	doc := WellKnownNodeInfo{
		Links: []NodeInfoLink{
			{
				Rel:  "http://nodeinfo.diaspora.software/ns/schema/2.0",
				Href: conf.BaseURL() + "/nodeinfo/2.0.json",
			},
		},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		log.Printf("nodeinfo: marshal well-known: %v", err)
		return "{}"
	}
	return string(b)
}
