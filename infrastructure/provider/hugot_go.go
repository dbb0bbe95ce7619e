//go:build !ORT

package provider

import "github.com/knights-analytics/hugot"

// Without the ORT tag the model runs on hugot's pure Go backend, which needs
// no shared libraries.
func newHugotSession() (*hugot.Session, error) {
	return hugot.NewGoSession()
}
