package roster

import (
	"strconv"
	"strings"

	"github.com/nextlevelbuilder/botlink/pkg/protocol"
)

// Row is one user of the selected bot as the service returned it.
type Row struct {
	ID          string
	DisplayName string
	Phone       string
	Active      bool
	IsOwner     bool
}

func rowFromRaw(u protocol.RawUser) Row {
	r := Row{
		ID:          strconv.FormatInt(u.ID, 10),
		DisplayName: u.FullName(),
		Active:      u.Status,
		IsOwner:     u.IsOwner,
	}
	if u.Phone != nil {
		r.Phone = *u.Phone
	}
	return r
}

// FormattedPhone is the display form of the row's phone number.
func (r Row) FormattedPhone() string { return FormatPhone(r.Phone) }

// StatusLabel is the display form of the row's status.
func (r Row) StatusLabel() string { return StatusLabel(r.Active) }

// ActionLabel names the action offered for the row. The owner's own row
// offers none and reads "You".
func (r Row) ActionLabel() string {
	switch {
	case r.IsOwner:
		return "You"
	case r.Active:
		return "Deactivate"
	default:
		return "Activate"
	}
}

// StatusLabel renders an activation flag.
func StatusLabel(active bool) string {
	if active {
		return "Active"
	}
	return "Not Active"
}

// FormatPhone renders an 11-digit number as "+7 (111) 111-11-11". Anything
// else is returned trimmed but otherwise untouched.
func FormatPhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) != 11 {
		return strings.TrimSpace(raw)
	}
	return "+" + d[0:1] + " (" + d[1:4] + ") " + d[4:7] + "-" + d[7:9] + "-" + d[9:11]
}
