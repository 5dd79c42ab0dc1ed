package users

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Profile is the user object returned by /users/me. The backend owns its shape, so
// only the fields the client displays are typed; everything else lands in Attributes.
type Profile struct {
	ID         string         `json:"id,omitempty"`
	Email      string         `json:"email,omitempty"`
	Username   string         `json:"username,omitempty"`
	FullName   string         `json:"full_name,omitempty"`
	Verified   bool           `json:"is_verified,omitempty"`
	Attributes map[string]any `json:"-"`
}

// UnmarshalJSON accepts numeric or string ids and keeps unknown fields.
func (p *Profile) UnmarshalJSON(data []byte) error {
	raw := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	*p = Profile{Attributes: map[string]any{}}
	for k, v := range raw {
		switch k {
		case "id":
			p.ID = scalarString(v)
		case "email":
			p.Email = scalarString(v)
		case "username":
			p.Username = scalarString(v)
		case "full_name":
			p.FullName = scalarString(v)
		case "is_verified":
			p.Verified, _ = v.(bool)
		default:
			p.Attributes[k] = v
		}
	}
	return nil
}

// MarshalJSON writes the typed fields alongside Attributes.
func (p Profile) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, len(p.Attributes)+5)
	for k, v := range p.Attributes {
		body[k] = v
	}
	if p.ID != "" {
		body["id"] = p.ID
	}
	if p.Email != "" {
		body["email"] = p.Email
	}
	if p.Username != "" {
		body["username"] = p.Username
	}
	if p.FullName != "" {
		body["full_name"] = p.FullName
	}
	body["is_verified"] = p.Verified
	return json.Marshal(body)
}

// Empty reports whether the profile carries no data at all.
func (p *Profile) Empty() bool {
	return p == nil || (p.ID == "" && p.Email == "" && p.Username == "" && p.FullName == "" && !p.Verified && len(p.Attributes) == 0)
}

// DisplayName picks the friendliest non-empty identifier.
func (p *Profile) DisplayName() string {
	switch {
	case p == nil:
		return ""
	case p.FullName != "":
		return p.FullName
	case p.Username != "":
		return p.Username
	case p.Email != "":
		return p.Email
	}
	return p.ID
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// Registration is the JSON body sent to /users/. Extra carries any additional
// fields the backend accepts and is merged into the top level object.
type Registration struct {
	Email    string
	Password string
	Extra    map[string]any
}

func (r Registration) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, len(r.Extra)+2)
	for k, v := range r.Extra {
		body[k] = v
	}
	body["email"] = r.Email
	body["password"] = r.Password
	return json.Marshal(body)
}

// Account is the server side record kept by the development backend.
type Account struct {
	ID           string    `json:"id,omitempty"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"` // never serialize
	Verified     bool      `json:"is_verified"`
	DateJoined   time.Time `json:"date_joined,omitempty"`
	PendingOTP   string    `json:"-"`
}

// Profile projects the account onto the /users/me shape.
func (a *Account) Profile() Profile {
	return Profile{
		ID:       a.ID,
		Email:    a.Email,
		Verified: a.Verified,
		Attributes: map[string]any{
			"date_joined": a.DateJoined.UTC().Format(time.RFC3339),
		},
	}
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
