package domain

import "time"

// User represents a registered account. Password holds the bcrypt hash only;
// plaintext never survives the create or update call that carried it.
type User struct {
	ID        string
	Name      string
	Email     string
	Username  string
	Password  []byte
	CreatedAt time.Time
}

// UserUpdate carries a partial update. Empty fields are skipped when the
// update is applied: a field set to "" is indistinguishable from "not
// provided". That merge-by-truthiness rule is inherited behavior the HTTP
// contract depends on.
type UserUpdate struct {
	Name     string
	Email    string
	Username string
	// Password is the already-hashed replacement credential, set only when
	// the caller supplied a new plaintext password.
	Password []byte
}

// Empty reports whether the update would change nothing.
func (u UserUpdate) Empty() bool {
	return u.Name == "" && u.Email == "" && u.Username == "" && len(u.Password) == 0
}
