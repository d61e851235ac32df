package provision

import "fmt"

// Stage is a state of the provisioning state machine. Runs only move
// forward; a failed run stops at the last stage it reached.
type Stage int

const (
	StageStart Stage = iota
	StageKeyResolved
	StageConfigBuilt
	StageServerCreateRequested
	StageServerActionPolling
	StageServerReady
	StageSSHReachable
	StageDNSRegistered
	StageFilesCopied
	StageStartupRan
	StageDone
)

var stageNames = [...]string{
	StageStart:                 "start",
	StageKeyResolved:           "key-resolved",
	StageConfigBuilt:           "config-built",
	StageServerCreateRequested: "server-create-requested",
	StageServerActionPolling:   "server-action-polling",
	StageServerReady:           "server-ready",
	StageSSHReachable:          "ssh-reachable",
	StageDNSRegistered:         "dns-registered",
	StageFilesCopied:           "files-copied",
	StageStartupRan:            "startup-ran",
	StageDone:                  "done",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}
