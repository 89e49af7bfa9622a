package pagestate

import (
	"net/url"
	"slices"
	"strings"
)

// Query parameter names understood by the page machine.
const (
	ParamPage         = "page"
	ParamView         = "view"
	ParamAdvisorCode  = "advisorCode"
	ParamEmail        = "email"
	ParamType         = "type"
	ParamCode         = "code"
	ParamAccessToken  = "access_token"
	ParamRefreshToken = "refresh_token"
	ParamError        = "error"
	ParamErrorCode    = "error_code"
)

const (
	typeInvite   = "invite"
	typeRecovery = "recovery"
)

// Resolver computes the initial location of a freshly loaded page.
type Resolver struct {
	// AppHosts are hosts that open on the login page instead of landing.
	AppHosts []string
	// DefaultView is used when a dashboard URL carries no view.
	DefaultView View
}

// Initial resolves the location for a page load. Precedence: error and
// invite markers, explicit reset-password page, advisor code combinations,
// explicit page parameter, host default.
func (r Resolver) Initial(u *url.URL) Location {
	q := params(u)

	if HasRecoveryMarkers(u) {
		return Location{Page: ResetPassword}
	}
	if Page(q.Get(ParamPage)) == ResetPassword {
		return Location{Page: ResetPassword}
	}
	if q.Get(ParamAdvisorCode) != "" {
		if q.Get(ParamEmail) != "" {
			return Location{Page: Register}
		}
		return Location{Page: Login}
	}
	if p := Page(q.Get(ParamPage)); p.Valid() {
		return r.withView(Location{Page: p}, q)
	}
	if u != nil && slices.Contains(r.AppHosts, strings.ToLower(u.Hostname())) {
		return Location{Page: Login}
	}
	return Location{Page: Landing}
}

// Rehydrate resolves the location after browser back/forward. A missing or
// unknown page parameter lands on Landing.
func (r Resolver) Rehydrate(u *url.URL) Location {
	q := params(u)
	p := Page(q.Get(ParamPage))
	if !p.Valid() {
		return Location{Page: Landing}
	}
	return r.withView(Location{Page: p}, q)
}

func (r Resolver) withView(loc Location, q url.Values) Location {
	if loc.Page != Dashboard {
		return loc
	}
	loc.View = r.DefaultView
	if v := View(q.Get(ParamView)); v.Valid() {
		loc.View = v
	}
	if !loc.View.Valid() {
		loc.View = ViewDashboard
	}
	return loc
}

// HasRecoveryMarkers reports whether the URL carries a recovery token, an
// invite type or an auth error code.
func HasRecoveryMarkers(u *url.URL) bool {
	q := params(u)
	if q.Get(ParamError) != "" || q.Get(ParamErrorCode) != "" {
		return true
	}
	switch q.Get(ParamType) {
	case typeInvite, typeRecovery:
		return true
	}
	return false
}

// IsInviteFlow reports whether the URL belongs to an advisor/invite
// onboarding link.
func IsInviteFlow(u *url.URL) bool {
	q := params(u)
	return q.Get(ParamAdvisorCode) != "" || q.Get(ParamType) == typeInvite
}

// Query renders loc as the query parameters mirrored into history.
func (loc Location) Query() url.Values {
	q := url.Values{}
	q.Set(ParamPage, string(loc.Page))
	if loc.Page == Dashboard && loc.View.Valid() {
		q.Set(ParamView, string(loc.View))
	}
	return q
}

// params merges query and fragment parameters; auth providers put tokens and
// errors in the fragment.
func params(u *url.URL) url.Values {
	if u == nil {
		return url.Values{}
	}
	q := u.Query()
	if u.Fragment != "" {
		if frag, err := url.ParseQuery(u.Fragment); err == nil {
			for k, vs := range frag {
				if q.Get(k) == "" {
					q[k] = vs
				}
			}
		}
	}
	return q
}
