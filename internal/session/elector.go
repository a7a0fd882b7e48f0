package session

import "math/rand/v2"

// Elector picks the next host of a room. It is called with the remaining
// member ids in sorted order; the slice is never empty.
type Elector func(members []string) string

// RandomElector picks any remaining member.
func RandomElector(members []string) string {
	return members[rand.IntN(len(members))]
}

// FirstElector picks the lowest connection id, which makes host changes
// predictable.
func FirstElector(members []string) string {
	return members[0]
}
