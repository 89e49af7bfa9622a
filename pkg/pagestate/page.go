package pagestate

// Page is one of the application's top-level screens.
type Page string

const (
	Landing              Page = "landing"
	Login                Page = "login"
	Register             Page = "register"
	CompleteRegistration Page = "complete-registration"
	Payment              Page = "payment"
	ResetPassword        Page = "reset-password"
	Subscription         Page = "subscription"
	Dashboard            Page = "dashboard"
)

// Pages lists the closed enumeration accepted from URLs.
var Pages = []Page{Landing, Login, Register, CompleteRegistration, Payment, ResetPassword, Subscription, Dashboard}

func (p Page) Valid() bool {
	for _, v := range Pages {
		if p == v {
			return true
		}
	}
	return false
}

func (p Page) String() string { return string(p) }

// View selects the dashboard layout; it is only meaningful on Dashboard.
type View string

const (
	ViewStartupHealth View = "startupHealth"
	ViewDashboard     View = "dashboard"
)

func (v View) Valid() bool {
	return v == ViewStartupHealth || v == ViewDashboard
}

// Trigger is an input to the page machine.
type Trigger string

const (
	RecoveryDetected      Trigger = "recovery_detected"
	SignedIn              Trigger = "signed_in"
	PasswordSet           Trigger = "password_set"
	RegistrationSubmitted Trigger = "registration_submitted"
	PlanChosen            Trigger = "plan_chosen"
	CheckoutStarted       Trigger = "checkout_started"
	PaymentCompleted      Trigger = "payment_completed"
	StartupMissing        Trigger = "startup_missing"
	LoginRequested        Trigger = "login_requested"
	RegisterRequested     Trigger = "register_requested"
	SignedOut             Trigger = "signed_out"
	Navigated             Trigger = "navigated"
)

// UserTriggers are the triggers a UI action may fire directly. The rest are
// driven by the session reconciler or by navigation.
var UserTriggers = []Trigger{
	PasswordSet, RegistrationSubmitted, PlanChosen, CheckoutStarted,
	PaymentCompleted, LoginRequested, RegisterRequested,
}

func (t Trigger) UserInitiated() bool {
	for _, u := range UserTriggers {
		if t == u {
			return true
		}
	}
	return false
}

// Facts is what the guards look at. ProfileComplete is supplied by the
// profile collaborator and treated as opaque here.
type Facts struct {
	ProfileComplete bool
	IsStartup       bool
	InviteFlow      bool
	PasswordSet     bool
}

// Location is a page plus the dashboard view and empty-state marker.
type Location struct {
	Page      Page `json:"page"`
	View      View `json:"view,omitempty"`
	NoStartup bool `json:"no_startup,omitempty"`
}
