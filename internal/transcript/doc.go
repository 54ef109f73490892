// Package transcript holds the append-only chat log of a signed-in session.
//
// # Overview
//
// A Transcript is an ordered sequence of entries, each either the user's own
// question or an assistant reply. Entries are never edited or removed. The
// log lives for one authenticated session and is dropped on logout.
//
// # Views
//
// The sequence itself is a single growing log, but callers can render it
// incrementally:
//
//   - Entries(): a copy of the whole log
//   - Since(n): entries appended after the first n (poll-style rendering)
//   - Subscribe(ctx): a channel receiving each entry as it is appended
//
// # Export
//
// RenderHTML writes the log as a standalone HTML page. Assistant answers are
// treated as markdown and converted with goldmark.
package transcript
