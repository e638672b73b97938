package entity

type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteDeclined InviteStatus = "declined"
)

type Invite struct {
	ID        string       `json:"id"`
	From      string       `json:"from"`
	To        string       `json:"to"`
	Game      Game         `json:"game"`
	GameName  string       `json:"gameName"`
	Status    InviteStatus `json:"status"`
	Timestamp int64        `json:"timestamp"`
	SessionID string       `json:"sessionId,omitempty"`
}

func (that *Invite) IsPending() bool {
	return that.Status == InvitePending
}
