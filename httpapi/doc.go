// Package httpapi is the HTTP face of the service: a JSON API for
// enrollment, verification, and attendance data, plus the plain-text
// iclock endpoints eSSL/ZKTeco terminals push to.
//
// The two surfaces have different manners. The JSON API speaks structured
// requests and typed errors; the iclock surface answers with the bare
// "OK" acknowledgements the terminal firmware expects and never returns
// JSON. Keep that split when adding routes.
package httpapi
