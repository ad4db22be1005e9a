// Package mailbox holds the view state of a single mail session: the selected
// account and folder, the current message list with its search filter, the
// opened message, compose validation and the display theme.
//
// Each view region (list, detail) carries a generation counter. A fetch result
// is applied only when no newer fetch for the same region was issued since, so
// a slow response never overwrites a newer one.
package mailbox
