package model

// Member is a read-only projection of the church directory.
type Member struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Status    string `json:"status"`
	GroupName string `json:"group_name"`
	Ministry  string `json:"ministry"`
}

func (m Member) FullName() string {
	switch {
	case m.FirstName == "":
		return m.LastName
	case m.LastName == "":
		return m.FirstName
	}
	return m.FirstName + " " + m.LastName
}

func (m Member) Recipient() Recipient {
	return Recipient{ID: m.ID, Name: m.FullName(), Email: m.Email, Phone: m.Phone}
}
