// Package pagestate is the page/view state machine of a tab.
//
// The machine has a closed set of pages and one transition table (see
// table in machine.go) evaluated by pkg/statemachine. The initial page comes
// from the URL once, at load; browser back/forward rehydrates it from the
// URL again. Profile completeness, role and invite status reach the guards
// as a Facts value and are never computed here.
package pagestate
