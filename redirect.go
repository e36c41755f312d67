package expose

import (
	"fmt"
	"net/http"
)

// Redirect is returned by a function to send an HTTP caller elsewhere. It
// bypasses the error handler table and is answered with Status and a
// Location header. CLI and local callers receive it as a plain error.
type Redirect struct {
	Location string
	Status   int
}

func (r *Redirect) Error() string {
	return fmt.Sprintf("redirect %d to %s", r.Status, r.Location)
}

// StatusCode returns the redirect status.
func (r *Redirect) StatusCode() int { return r.Status }

// RedirectTo redirects to location with status.
func RedirectTo(location string, status int) error {
	return &Redirect{Location: location, Status: status}
}

// PermanentRedirect redirects with 301 Moved Permanently.
func PermanentRedirect(location string) error {
	return RedirectTo(location, http.StatusMovedPermanently)
}

// Found redirects with 302 Found.
func Found(location string) error {
	return RedirectTo(location, http.StatusFound)
}

// SeeOther redirects with 303 See Other.
func SeeOther(location string) error {
	return RedirectTo(location, http.StatusSeeOther)
}

// TemporaryRedirect redirects with 307 Temporary Redirect.
func TemporaryRedirect(location string) error {
	return RedirectTo(location, http.StatusTemporaryRedirect)
}
