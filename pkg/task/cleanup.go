package task

import (
	"fmt"
	"strings"

	"github.com/scalecore/scheduler/pkg/model"
)

// CleanupTarget is the set of container and volume names one finished
// execution contributes to a targeted cleanup command.
type CleanupTarget struct {
	ContainerNames []string
	VolumeNames    []string
}

// CleanupTask is a housekeeping step constructed per agent. Its command is
// built once at construction and never reassigned: initial cleanup removes
// every non-running container and dangling volume on the agent; targeted
// cleanup filters by the exact container/volume names of the finished
// executions it was built for.
type CleanupTask struct {
	base
	isInitial bool
	command   string
}

const cleanupCPUs = 0.1
const cleanupMemMiB = 32

const allContainersCmd = "docker ps -f status=created -f status=dead -f status=exited --format '{{.Names}}'"
const allVolumesCmd = "docker volume ls -f dangling=true -q"

// NewCleanupTask builds a CleanupTask for one agent. When targets is empty
// the task performs the broad initial cleanup; otherwise it performs a
// targeted cleanup scoped to the union of container and volume names across
// targets.
func NewCleanupTask(frameworkID, agentID string, gen IDGenerator, targets []CleanupTarget) *CleanupTask {
	id := fmt.Sprintf("%s_%s_%d", PrefixCleanup, frameworkID, gen.Next())
	isInitial := len(targets) == 0

	containersCmd := allContainersCmd
	volumesCmd := allVolumesCmd
	if !isInitial {
		var containerNames, volumeNames []string
		for _, t := range targets {
			containerNames = append(containerNames, t.ContainerNames...)
			volumeNames = append(volumeNames, t.VolumeNames...)
		}
		containersCmd = grepFilter(allContainersCmd, containerNames)
		volumesCmd = grepFilter(allVolumesCmd, volumeNames)
	}

	deleteContainers := forEachCmd("cont", containersCmd, "docker rm $cont")
	deleteVolumes := forEachCmd("vol", volumesCmd, "docker volume rm $vol")
	command := deleteContainers + "; " + deleteVolumes

	ct := &CleanupTask{
		base:      newBase(id, KindCleanup, "cleanup", agentID, "", true, model.Resources{CPUs: cleanupCPUs, MemMiB: cleanupMemMiB}, nil),
		isInitial: isInitial,
		command:   command,
	}
	return ct
}

// IsInitial reports whether this is the broad, agent-wide cleanup (the
// first task emitted for an agent) rather than a targeted one.
func (t *CleanupTask) IsInitial() bool { return t.isInitial }

// Command returns the literal shell command this task carries.
func (t *CleanupTask) Command() string { return t.command }

func (t *CleanupTask) Update(u model.StatusUpdate)       { t.update(u) }
func (t *CleanupTask) Complete(u model.StatusUpdate) bool { return t.complete(u) }

// DetermineError never classifies a cleanup failure against the general
// fallback: cleanup tasks carry no job-execution error reference.
func (t *CleanupTask) DetermineError(model.StatusUpdate) *model.Error { return nil }

func (t *CleanupTask) PopulateJobExeModel(row *model.TaskMetadata) { t.populateJobExeModel(row) }
func (t *CleanupTask) RefreshCachedValues(row *model.JobExecution) { t.refreshCachedValues(row) }

func forEachCmd(varName, listCmd, body string) string {
	return fmt.Sprintf("for %s in `%s`; do %s; done", varName, listCmd, body)
}

func grepFilter(listCmd string, names []string) string {
	if len(names) == 0 {
		return listCmd
	}
	var b strings.Builder
	b.WriteString("grep")
	for _, n := range names {
		b.WriteString(" -e ")
		b.WriteString(n)
	}
	return listCmd + " | " + b.String()
}

var _ Task = (*CleanupTask)(nil)
