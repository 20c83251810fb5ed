package orders

import (
	"encoding/json"
	"fmt"
)

// Actor is who caused a transition: the system (asynchronous or external
// confirmations) or a specific user.
type Actor struct {
	userID string
}

func SystemActor() Actor { return Actor{} }

func UserActor(id string) Actor { return Actor{userID: id} }

func (a Actor) IsSystem() bool { return a.userID == "" }

// UserID returns the acting user and false for system actors.
func (a Actor) UserID() (string, bool) {
	return a.userID, a.userID != ""
}

func (a Actor) String() string {
	if a.IsSystem() {
		return "system"
	}
	return "user:" + a.userID
}

// nullable maps the actor onto a nullable changed_by column.
func (a Actor) nullable() *string {
	if a.IsSystem() {
		return nil
	}
	id := a.userID
	return &id
}

func actorFromColumn(v *string) Actor {
	if v == nil || *v == "" {
		return SystemActor()
	}
	return UserActor(*v)
}

type actorJSON struct {
	Kind   string `json:"kind"`
	UserID string `json:"user_id,omitempty"`
}

func (a Actor) MarshalJSON() ([]byte, error) {
	if a.IsSystem() {
		return json.Marshal(actorJSON{Kind: "system"})
	}
	return json.Marshal(actorJSON{Kind: "user", UserID: a.userID})
}

func (a *Actor) UnmarshalJSON(b []byte) error {
	var v actorJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v.Kind {
	case "system":
		*a = SystemActor()
	case "user":
		if v.UserID == "" {
			return fmt.Errorf("actor: user kind without user_id")
		}
		*a = UserActor(v.UserID)
	default:
		return fmt.Errorf("actor: unknown kind %q", v.Kind)
	}
	return nil
}
