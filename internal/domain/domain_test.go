package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReservation_Overlaps(t *testing.T) {
	base := &Reservation{SpaceID: "s1", Date: "2026-10-20", StartTime: "10:00", EndTime: "12:00"}

	cases := []struct {
		name  string
		other Reservation
		want  bool
	}{
		{"Inside", Reservation{SpaceID: "s1", Date: "2026-10-20", StartTime: "10:30", EndTime: "11:00"}, true},
		{"StraddlesStart", Reservation{SpaceID: "s1", Date: "2026-10-20", StartTime: "09:00", EndTime: "10:01"}, true},
		{"Touching", Reservation{SpaceID: "s1", Date: "2026-10-20", StartTime: "12:00", EndTime: "13:00"}, false},
		{"OtherDate", Reservation{SpaceID: "s1", Date: "2026-10-21", StartTime: "10:00", EndTime: "12:00"}, false},
		{"OtherSpace", Reservation{SpaceID: "s2", Date: "2026-10-20", StartTime: "10:00", EndTime: "12:00"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, base.Overlaps(&tc.other))
			assert.Equal(t, tc.want, tc.other.Overlaps(base))
		})
	}
}

func TestRequestPayload_Merge(t *testing.T) {
	stored := RequestPayload{Name: "Ana Perez", Email: "ana@example.com"}

	merged := stored.Merge(&RequestPayload{Address: "Calle 1", Role: RoleAdmin})
	assert.Equal(t, "Ana Perez", merged.Name)
	assert.Equal(t, "Calle 1", merged.Address)
	assert.Equal(t, RoleAdmin, merged.Role)

	assert.Equal(t, stored, stored.Merge(nil))
}
