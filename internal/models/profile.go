package models

// Profile is the settings view of an account.
type Profile struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	JobTitle     string `json:"jobTitle"`
	Phone        string `json:"phone"`
	Timezone     string `json:"timezone"`
	Language     string `json:"language"`
	ProfileImage string `json:"profileImage"`
}

// Profile returns the settings view with defaults applied.
func (u *User) Profile() Profile {
	p := Profile{
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        u.Email,
		JobTitle:     u.JobTitle,
		Phone:        u.Phone,
		Timezone:     u.Timezone,
		Language:     u.Language,
		ProfileImage: u.ProfileImage,
	}
	if p.Timezone == "" {
		p.Timezone = DefaultTimezone
	}
	if p.Language == "" {
		p.Language = DefaultLanguage
	}
	return p
}

// ProfileUpdate is a partial update; nil fields are left unchanged.
type ProfileUpdate struct {
	Name         *string
	Email        *string
	FirstName    *string
	LastName     *string
	JobTitle     *string
	Phone        *string
	Timezone     *string
	Language     *string
	ProfileImage *string
}

// Columns maps the supplied fields to their column names.
func (p ProfileUpdate) Columns() map[string]any {
	cols := map[string]any{}
	set := func(name string, v *string) {
		if v != nil {
			cols[name] = *v
		}
	}
	set("name", p.Name)
	if p.Email != nil {
		cols["email"] = NormalizeEmail(*p.Email)
	}
	set("first_name", p.FirstName)
	set("last_name", p.LastName)
	set("job_title", p.JobTitle)
	set("phone", p.Phone)
	set("timezone", p.Timezone)
	set("language", p.Language)
	set("profile_image", p.ProfileImage)
	return cols
}

// Empty reports whether no field is supplied.
func (p ProfileUpdate) Empty() bool { return len(p.Columns()) == 0 }
