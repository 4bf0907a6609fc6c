package api

type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type Option struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	VotesCount int    `json:"votes_count"`
}

// Poll is the server's authoritative view of one poll for the requesting
// user. SelectedOptionID is empty unless Voted is true, and then names one
// of Options.
type Poll struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Options          []Option `json:"options"`
	Voted            bool     `json:"voted"`
	SelectedOptionID string   `json:"selected_option_id"`
	IsOpen           bool     `json:"is_open"`
}

// HasVotes reports whether any option has recorded votes. A poll with
// votes has its title and options locked for editing.
func (p Poll) HasVotes() bool {
	for _, opt := range p.Options {
		if opt.VotesCount > 0 {
			return true
		}
	}
	return false
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type createPollRequest struct {
	Title   string   `json:"title"`
	Options []string `json:"options"`
}

type updatePollRequest struct {
	Title   string   `json:"title"`
	IsOpen  bool     `json:"is_open"`
	Options []string `json:"options,omitempty"`
}
