// Package sample defines the record types served by the beanstore binary.
package sample

import (
	"github.com/ssargent/beanstore/pkg/bean"
)

// TestBean is the two-field record used in smoke tests and the CLI.
type TestBean struct {
	Value1 int32
	Value2 int64
}

var (
	TestBeanValue1 = bean.NewField(1, "value1", bean.Int32(),
		func(r *TestBean) int32 { return r.Value1 },
		func(r *TestBean, v int32) { r.Value1 = v })
	TestBeanValue2 = bean.NewField(2, "value2", bean.Int64(),
		func(r *TestBean) int64 { return r.Value2 },
		func(r *TestBean, v int64) { r.Value2 = v })

	TestBeanLayout = bean.MustLayout[TestBean]("test_bean", TestBeanValue1, TestBeanValue2)
)

type Address struct {
	Street  string
	City    string
	Country string
	Lat     float64
	Lon     float64
}

var (
	AddressStreet = bean.NewField(1, "street", bean.String(),
		func(r *Address) string { return r.Street },
		func(r *Address, v string) { r.Street = v })
	AddressCity = bean.NewField(2, "city", bean.String(),
		func(r *Address) string { return r.City },
		func(r *Address, v string) { r.City = v })
	AddressCountry = bean.NewField(3, "country", bean.String(),
		func(r *Address) string { return r.Country },
		func(r *Address, v string) { r.Country = v })
	AddressLat = bean.NewField(4, "lat", bean.Float64(),
		func(r *Address) float64 { return r.Lat },
		func(r *Address, v float64) { r.Lat = v })
	AddressLon = bean.NewField(5, "lon", bean.Float64(),
		func(r *Address) float64 { return r.Lon },
		func(r *Address, v float64) { r.Lon = v })

	AddressLayout = bean.MustLayout[Address]("address",
		AddressStreet, AddressCity, AddressCountry, AddressLat, AddressLon)
)

// Profile exercises every field kind the codec supports.
type Profile struct {
	Name      string
	Email     string
	Age       int32
	Visits    int64
	Active    bool
	Rating    float32
	Balance   float64
	Avatar    []byte
	Aliases   []string
	Tags      map[string]struct{}
	Counters  map[string]int64
	Home      Address
	Previous  []Address
	CreatedAt int64 // Unix milliseconds
	Notes     string
}

var (
	ProfileName = bean.NewField(1, "name", bean.String(),
		func(r *Profile) string { return r.Name },
		func(r *Profile, v string) { r.Name = v })
	ProfileEmail = bean.NewField(2, "email", bean.String(),
		func(r *Profile) string { return r.Email },
		func(r *Profile, v string) { r.Email = v })
	ProfileAge = bean.NewField(3, "age", bean.Int32(),
		func(r *Profile) int32 { return r.Age },
		func(r *Profile, v int32) { r.Age = v })
	ProfileVisits = bean.NewField(4, "visits", bean.Int64(),
		func(r *Profile) int64 { return r.Visits },
		func(r *Profile, v int64) { r.Visits = v })
	ProfileActive = bean.NewField(5, "active", bean.Bool(),
		func(r *Profile) bool { return r.Active },
		func(r *Profile, v bool) { r.Active = v })
	ProfileRating = bean.NewField(6, "rating", bean.Float32(),
		func(r *Profile) float32 { return r.Rating },
		func(r *Profile, v float32) { r.Rating = v })
	ProfileBalance = bean.NewField(7, "balance", bean.Float64(),
		func(r *Profile) float64 { return r.Balance },
		func(r *Profile, v float64) { r.Balance = v })
	ProfileAvatar = bean.NewField(8, "avatar", bean.Bytes(),
		func(r *Profile) []byte { return r.Avatar },
		func(r *Profile, v []byte) { r.Avatar = v })
	ProfileAliases = bean.NewField(9, "aliases", bean.List(bean.String()),
		func(r *Profile) []string { return r.Aliases },
		func(r *Profile, v []string) { r.Aliases = v })
	ProfileTags = bean.NewField(10, "tags", bean.Set(bean.String()),
		func(r *Profile) map[string]struct{} { return r.Tags },
		func(r *Profile, v map[string]struct{}) { r.Tags = v })
	ProfileCounters = bean.NewField(11, "counters", bean.Map(bean.String(), bean.Int64()),
		func(r *Profile) map[string]int64 { return r.Counters },
		func(r *Profile, v map[string]int64) { r.Counters = v })
	ProfileHome = bean.NewField(12, "home", bean.Record(AddressLayout),
		func(r *Profile) Address { return r.Home },
		func(r *Profile, v Address) { r.Home = v })
	ProfilePrevious = bean.NewField(13, "previous", bean.List(bean.Record(AddressLayout)),
		func(r *Profile) []Address { return r.Previous },
		func(r *Profile, v []Address) { r.Previous = v })
	ProfileCreatedAt = bean.NewField(14, "created_at", bean.Int64(),
		func(r *Profile) int64 { return r.CreatedAt },
		func(r *Profile, v int64) { r.CreatedAt = v })
	// Notes was added after the first release; it sits past the inline
	// ordinal range.
	ProfileNotes = bean.NewField(70, "notes", bean.String(),
		func(r *Profile) string { return r.Notes },
		func(r *Profile, v string) { r.Notes = v })

	ProfileLayout = bean.MustLayout[Profile]("profile",
		ProfileName, ProfileEmail, ProfileAge, ProfileVisits, ProfileActive,
		ProfileRating, ProfileBalance, ProfileAvatar, ProfileAliases, ProfileTags,
		ProfileCounters, ProfileHome, ProfilePrevious, ProfileCreatedAt, ProfileNotes)
)
