// Copyright 2025 James Ross
package scheduler

import "strings"

const ownerTagPrefix = "owner:"

// OwnerFromTags extracts the owner id from a job's tags, looking for the
// first tag of the form "owner:<id>". Returns "" if none is present.
func OwnerFromTags(tags []string) string {
	for _, tag := range tags {
		if strings.HasPrefix(tag, ownerTagPrefix) {
			return strings.TrimPrefix(tag, ownerTagPrefix)
		}
	}
	return ""
}
