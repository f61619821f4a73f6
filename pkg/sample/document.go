package sample

import (
	"slices"
	"time"
)

// AddressDoc is the JSON form of an Address.
type AddressDoc struct {
	Street  string  `json:"street,omitempty" yaml:"street,omitempty"`
	City    string  `json:"city,omitempty" yaml:"city,omitempty"`
	Country string  `json:"country,omitempty" yaml:"country,omitempty"`
	Lat     float64 `json:"lat,omitempty" yaml:"lat,omitempty"`
	Lon     float64 `json:"lon,omitempty" yaml:"lon,omitempty"`
}

// ProfileDoc is the JSON form of a Profile, as accepted and returned by
// the HTTP API and the CLI.
type ProfileDoc struct {
	Name      string           `json:"name,omitempty" yaml:"name,omitempty"`
	Email     string           `json:"email,omitempty" yaml:"email,omitempty"`
	Age       int32            `json:"age,omitempty" yaml:"age,omitempty"`
	Visits    int64            `json:"visits,omitempty" yaml:"visits,omitempty"`
	Active    bool             `json:"active,omitempty" yaml:"active,omitempty"`
	Rating    float32          `json:"rating,omitempty" yaml:"rating,omitempty"`
	Balance   float64          `json:"balance,omitempty" yaml:"balance,omitempty"`
	Avatar    []byte           `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	Aliases   []string         `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Tags      []string         `json:"tags,omitempty" yaml:"tags,omitempty"`
	Counters  map[string]int64 `json:"counters,omitempty" yaml:"counters,omitempty"`
	Home      *AddressDoc      `json:"home,omitempty" yaml:"home,omitempty"`
	Previous  []AddressDoc     `json:"previous,omitempty" yaml:"previous,omitempty"`
	CreatedAt *time.Time       `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Notes     string           `json:"notes,omitempty" yaml:"notes,omitempty"`
}

func (d AddressDoc) Address() Address {
	return Address(d)
}

func NewAddressDoc(a Address) AddressDoc {
	return AddressDoc(a)
}

// Profile converts d into a record.
func (d *ProfileDoc) Profile() *Profile {
	p := &Profile{
		Name:     d.Name,
		Email:    d.Email,
		Age:      d.Age,
		Visits:   d.Visits,
		Active:   d.Active,
		Rating:   d.Rating,
		Balance:  d.Balance,
		Avatar:   d.Avatar,
		Aliases:  d.Aliases,
		Counters: d.Counters,
		Notes:    d.Notes,
	}
	if len(d.Tags) > 0 {
		p.Tags = make(map[string]struct{}, len(d.Tags))
		for _, t := range d.Tags {
			p.Tags[t] = struct{}{}
		}
	}
	if d.Home != nil {
		p.Home = d.Home.Address()
	}
	for _, a := range d.Previous {
		p.Previous = append(p.Previous, a.Address())
	}
	if d.CreatedAt != nil {
		p.CreatedAt = d.CreatedAt.UnixMilli()
	}
	return p
}

// NewProfileDoc converts p for output. Tags come out sorted.
func NewProfileDoc(p *Profile) *ProfileDoc {
	d := &ProfileDoc{
		Name:     p.Name,
		Email:    p.Email,
		Age:      p.Age,
		Visits:   p.Visits,
		Active:   p.Active,
		Rating:   p.Rating,
		Balance:  p.Balance,
		Avatar:   p.Avatar,
		Aliases:  p.Aliases,
		Counters: p.Counters,
		Notes:    p.Notes,
	}
	for t := range p.Tags {
		d.Tags = append(d.Tags, t)
	}
	slices.Sort(d.Tags)
	if !AddressLayout.IsDefault(&p.Home) {
		home := NewAddressDoc(p.Home)
		d.Home = &home
	}
	for _, a := range p.Previous {
		d.Previous = append(d.Previous, NewAddressDoc(a))
	}
	if p.CreatedAt != 0 {
		ts := time.UnixMilli(p.CreatedAt).UTC()
		d.CreatedAt = &ts
	}
	return d
}
