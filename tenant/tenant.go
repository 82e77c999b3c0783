// Package tenant is the authoritative registry of constituencies covered by
// the campaign and the naming rule that maps a constituency to its storage
// partitions. The universe of valid ids is static: one id per assembly
// segment, fixed at deployment time. Every cross-shard fan-out is bounded by
// this registry, so nothing here performs I/O.
package tenant

import (
	"fmt"
	"slices"
)

// Dataset is one logical collection of campaign data, partitioned per tenant.
type Dataset string

const (
	// DatasetVoters holds the voter roster.
	DatasetVoters Dataset = "voters"

	// DatasetSurveyResponses holds field-survey submissions.
	DatasetSurveyResponses Dataset = "survey_responses"

	// DatasetMobileAnswers holds answers submitted through the mobile app.
	DatasetMobileAnswers Dataset = "mobile_answers"

	// DatasetActivityLog holds the field-agent activity log.
	DatasetActivityLog Dataset = "activity_log"
)

// allIDs is the static universe of assembly segments covered by the campaign.
// Kept sorted.
var allIDs = []int{56, 57, 58, 101, 102, 103, 104}

// IsValid reports whether id identifies a constituency covered by the
// campaign.
func IsValid(id int) bool {
	_, ok := slices.BinarySearch(allIDs, id)
	return ok
}

// AllIDs returns every valid constituency id in ascending order.
// The returned slice is a copy; callers may modify it.
func AllIDs() []int {
	return slices.Clone(allIDs)
}

// Count returns the number of constituencies in the registry.
func Count() int { return len(allIDs) }

// PartitionName returns the physical partition name for one tenant's slice of
// a dataset, in the form "{datasetPrefix}_{tenantId}". Every subsystem that
// addresses tenant data must agree on this rule exactly.
func PartitionName(ds Dataset, tenantID int) string {
	return fmt.Sprintf("%s_%d", ds, tenantID)
}
