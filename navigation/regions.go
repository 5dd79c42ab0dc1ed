package navigation

import "strings"

// Regions names the two route regions the guard moves between.
type Regions struct {
	// AuthGroup is the first path segment shared by every unauthenticated screen.
	AuthGroup string
	// AuthEntry is where an unauthenticated user outside AuthGroup is sent.
	AuthEntry string
	// AppEntry is where an authenticated user is sent.
	AppEntry string
	// Verification is the one-time code screen reached after signup.
	Verification string
}

func DefaultRegions() Regions {
	return Regions{
		AuthGroup:    "(auth)",
		AuthEntry:    "/(auth)/login",
		AppEntry:     "/(tabs)",
		Verification: "/(auth)/otp-verification",
	}
}

// InAuthGroup reports whether route's first segment is the auth group.
func (r Regions) InAuthGroup(route string) bool {
	first, _, _ := strings.Cut(strings.TrimLeft(route, "/"), "/")
	return first != "" && first == r.AuthGroup
}
