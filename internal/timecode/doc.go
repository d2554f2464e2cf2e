// Package timecode holds the time-of-day value carried by chat messages.
//
// A TimePart is a millisecond offset from midnight, always normalized into
// [0, 24h). Archives encode it as "HH:MM:SS" with an optional ".fff" fraction;
// Parse accepts exactly that form and nothing looser.
package timecode
