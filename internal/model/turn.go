package model

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role       Role        `json:"role"`
	Content    string      `json:"content"`
	References []Reference `json:"references,omitempty"`
	Ctime      int64       `json:"ctime"`
}
