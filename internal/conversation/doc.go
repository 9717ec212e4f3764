// Package conversation keeps the question/answer history of one chat session.
//
// A History only grows: turns are appended in the order their answers were
// produced and are never edited, removed or reordered. The session that owns
// a History is its only writer; readers get copies.
package conversation
