package coordinator

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dmitrymomot/raisekit/pkg/authevents"
	"github.com/dmitrymomot/raisekit/pkg/handler"
	"github.com/dmitrymomot/raisekit/pkg/jwt"
	"github.com/dmitrymomot/raisekit/pkg/pagestate"
	"github.com/dmitrymomot/raisekit/svc/reconciler"
)

type tabParam struct {
	TabID string `path:"tab"`
}

type openTabRequest struct {
	URL       string `json:"url"`
	UserAgent string `json:"user_agent,omitempty"`
}

type navigateRequest struct {
	TabID string `path:"tab"`
	URL   string `json:"url"`
}

type transitionRequest struct {
	TabID   string `path:"tab"`
	Trigger string `json:"trigger"`
}

type viewRequest struct {
	TabID string `path:"tab"`
	View  string `json:"view"`
}

type switchRequest struct {
	TabID     string `path:"tab"`
	ProfileID string `json:"profile_id"`
}

type eventRequest struct {
	Kind string `json:"kind"`
}

type replayRequest struct {
	TabID string `path:"tab"`
	Kind  string `json:"kind"`
}

type tabResponse struct {
	State   reconciler.TabState `json:"state"`
	History []pagestate.Entry   `json:"history"`
}

func tabView(tab *reconciler.Tab) tabResponse {
	return tabResponse{State: tab.State(), History: tab.History()}
}

func outcomeMeta(out reconciler.Outcome) handler.JSONOption {
	return handler.WithMeta(map[string]any{"outcome": string(out)})
}

func parseURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, ErrInvalidURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	return u, nil
}

// publishEvent accepts a notification from the auth provider for the
// calling browser and fans it out to all of its tabs. The session comes
// from the verified bearer token only; SIGNED_IN without one is rejected.
func (m *Module) publishEvent(ctx handler.Context, req eventRequest) handler.Response {
	ev := authevents.Event{Kind: authevents.Kind(req.Kind)}
	if !ev.Kind.Valid() {
		return handler.Error(authevents.ErrInvalidEvent)
	}
	if ev.Kind != authevents.SignedOut {
		if claims, ok := jwt.GetClaims[*authevents.ProviderClaims](ctx); ok {
			sess, err := claims.Session()
			if err != nil {
				return handler.Error(errors.Join(ErrUnverifiedSession, err))
			}
			ev.Session = sess
		}
	}
	if ev.Kind == authevents.SignedIn && ev.Session == nil {
		return handler.Error(ErrUnverifiedSession)
	}
	if err := m.publisher.Publish(ctx, BrowserIDFromContext(ctx), ev); err != nil {
		return handler.Error(err)
	}
	return handler.EmptyWithStatus(http.StatusAccepted)
}

func (m *Module) openTab(ctx handler.Context, req openTabRequest) handler.Response {
	u, err := parseURL(req.URL)
	if err != nil {
		return handler.Error(err)
	}
	ua := req.UserAgent
	if ua == "" {
		ua = ctx.Request().UserAgent()
	}
	var view pagestate.View
	if c, err := ctx.Request().Cookie(CookieCurrentView); err == nil {
		view = pagestate.View(c.Value)
	}

	tab, out, err := m.registry.OpenTab(ctx, BrowserIDFromContext(ctx), u, ua, view)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(tabView(tab), handler.WithStatus(http.StatusCreated), outcomeMeta(out))
}

func (m *Module) getTab(ctx handler.Context, req tabParam) handler.Response {
	tab, err := m.tab(ctx, req.TabID)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(tabView(tab))
}

func (m *Module) closeTab(ctx handler.Context, req tabParam) handler.Response {
	if err := m.registry.CloseTab(BrowserIDFromContext(ctx), req.TabID); err != nil {
		return handler.Error(err)
	}
	return handler.Empty()
}

// navigate applies a browser back/forward to the tab.
func (m *Module) navigate(ctx handler.Context, req navigateRequest) handler.Response {
	tab, err := m.tab(ctx, req.TabID)
	if err != nil {
		return handler.Error(err)
	}
	u, err := parseURL(req.URL)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(tab.Navigate(ctx, u))
}

func (m *Module) fire(ctx handler.Context, req transitionRequest) handler.Response {
	tab, err := m.tab(ctx, req.TabID)
	if err != nil {
		return handler.Error(err)
	}
	loc, err := tab.Fire(ctx, pagestate.Trigger(req.Trigger))
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(loc)
}

// setView switches the dashboard layout and remembers it for new tabs.
func (m *Module) setView(ctx handler.Context, req viewRequest) handler.Response {
	tab, err := m.tab(ctx, req.TabID)
	if err != nil {
		return handler.Error(err)
	}
	view := pagestate.View(req.View)
	loc, err := tab.SetView(view)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(loc, handler.WithCookie(&http.Cookie{
		Name:     CookieCurrentView,
		Value:    string(view),
		Path:     "/",
		MaxAge:   int(m.cfg.ViewCookieTTL.Seconds()),
		SameSite: http.SameSiteLaxMode,
	}))
}

func (m *Module) listProfiles(ctx handler.Context, req tabParam) handler.Response {
	tab, err := m.tab(ctx, req.TabID)
	if err != nil {
		return handler.Error(err)
	}
	profiles, err := tab.Profiles(ctx)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(profiles)
}

// switchProfile makes another profile active and reloads the tab.
func (m *Module) switchProfile(ctx handler.Context, req switchRequest) handler.Response {
	tab, err := m.tab(ctx, req.TabID)
	if err != nil {
		return handler.Error(err)
	}
	if _, err := tab.SwitchProfile(ctx, req.ProfileID); err != nil {
		return handler.Error(err)
	}
	return handler.JSON(tabView(tab))
}

func (m *Module) debugSnapshot(ctx handler.Context, req tabParam) handler.Response {
	dc, err := m.debugController(ctx, req.TabID)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(dc.Snapshot())
}

func (m *Module) debugReload(ctx handler.Context, req tabParam) handler.Response {
	dc, err := m.debugController(ctx, req.TabID)
	if err != nil {
		return handler.Error(err)
	}
	if err := dc.ForceReload(ctx); err != nil {
		return handler.Error(err)
	}
	return handler.JSON(dc.Snapshot())
}

func (m *Module) debugClearDedup(ctx handler.Context, req tabParam) handler.Response {
	dc, err := m.debugController(ctx, req.TabID)
	if err != nil {
		return handler.Error(err)
	}
	if err := dc.ClearDedup(ctx); err != nil {
		return handler.Error(err)
	}
	return handler.Empty()
}

func (m *Module) debugResume(ctx handler.Context, req tabParam) handler.Response {
	dc, err := m.debugController(ctx, req.TabID)
	if err != nil {
		return handler.Error(err)
	}
	dc.ResumeEvents()
	return handler.JSON(dc.Snapshot())
}

func (m *Module) debugReplay(ctx handler.Context, req replayRequest) handler.Response {
	dc, err := m.debugController(ctx, req.TabID)
	if err != nil {
		return handler.Error(err)
	}
	out, err := dc.Replay(ctx, authevents.Kind(req.Kind))
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(dc.Snapshot(), outcomeMeta(out))
}
