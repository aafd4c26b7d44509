package importer

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"cadence/internal/matching"
	"cadence/internal/store"
)

// displayName picks the name recorded on a shadow student: the attendee's
// own display name, or one derived from the email's local part. Casers are
// stateful, so one is built per call.
func displayName(attendee matching.Attendee) string {
	if name := strings.TrimSpace(attendee.DisplayName); name != "" {
		return name
	}
	local, _, _ := strings.Cut(attendee.Email, "@")
	if plus := strings.IndexByte(local, '+'); plus >= 0 {
		local = local[:plus]
	}
	local = strings.Map(func(r rune) rune {
		switch r {
		case '.', '_', '-':
			return ' '
		}
		return r
	}, local)
	return cases.Title(language.English).String(strings.Join(strings.Fields(local), " "))
}

func isLinkExists(err error) bool {
	return errors.Is(err, store.ErrLinkExists)
}
