// Package util provides small helpers shared across TextPipe packages.
package util

import (
	"math/rand"
	"strings"
)

// ScheduleIDPrefix marks identifiers of scheduled outbox messages.
const ScheduleIDPrefix = "sched_"

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
// Not suitable for secrets.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.Intn(16)])
	}

	return builder.String()
}

// GenerateScheduleID generates an outbox message ID with the "sched_" prefix.
func GenerateScheduleID() string {
	return GenerateRandomID(ScheduleIDPrefix, 32)
}
