package mlog

import "github.com/google/uuid"

// FormatID shortens a process ID for display.
//
// UUIDs, which are used for locally created processes, are shortened to
// their first group of hex digits. IDs assigned by peers may take any form
// and are shown in full.
func FormatID(id string) string {
	if len(id) == 36 {
		if _, err := uuid.Parse(id); err == nil {
			return id[:8]
		}
	}

	return id
}
