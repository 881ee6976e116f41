// Package notify builds and delivers the system's outbound email:
// consumption alerts and run digests for the operations team, renewal
// reminders for clients, and run failure notices.
//
// Client-facing mail is HTML with a plain-text rendition and always
// carries an unsubscribe link. Operations mail is plain text.
package notify
