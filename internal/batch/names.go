package batch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// jobIDPattern matches valid job IDs: lowercase alphanumeric and hyphens,
// starting with a letter, as the real API enforces.
var jobIDPattern = regexp.MustCompile(`^[a-z]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ValidJobID reports whether id is a syntactically valid job ID.
func ValidJobID(id string) bool {
	return jobIDPattern.MatchString(id)
}

// JobName builds the fully qualified resource name for a job.
func JobName(project, location, jobID string) string {
	return fmt.Sprintf("projects/%s/locations/%s/jobs/%s", project, location, jobID)
}

// TaskName builds the resource name of the index-th task of a job.
// Task names are deterministic; index uniqueness within a job holds by
// construction.
func TaskName(jobName string, index int) string {
	return fmt.Sprintf("%s/tasks/%d", jobName, index)
}

// ListPrefix returns the name prefix shared by all jobs under a
// project/location scope.
func ListPrefix(project, location string) string {
	return fmt.Sprintf("projects/%s/locations/%s/jobs/", project, location)
}

// ParseJobName splits a job resource name into its components.
func ParseJobName(name string) (project, location, jobID string, err error) {
	parts := strings.Split(name, "/")
	if len(parts) != 6 || parts[0] != "projects" || parts[2] != "locations" || parts[4] != "jobs" ||
		parts[1] == "" || parts[3] == "" || parts[5] == "" {
		return "", "", "", fmt.Errorf("malformed job name %q", name)
	}
	return parts[1], parts[3], parts[5], nil
}

// ParseTaskName splits a task resource name into its job name and index.
func ParseTaskName(name string) (jobName string, index int, err error) {
	jobName, idx, ok := strings.Cut(name, "/tasks/")
	if !ok {
		return "", 0, fmt.Errorf("malformed task name %q", name)
	}
	index, err = strconv.Atoi(idx)
	if err != nil || index < 0 {
		return "", 0, fmt.Errorf("malformed task name %q", name)
	}
	if _, _, _, err := ParseJobName(jobName); err != nil {
		return "", 0, fmt.Errorf("malformed task name %q", name)
	}
	return jobName, index, nil
}
