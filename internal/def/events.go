package def

// Bus event names consumed by the core. Payload shapes are documented on
// the emitting collaborator; the core reads them as loosely-typed maps.
const (
	EventMessageRead           = "message-read"
	EventSoftwareInstalled     = "software-installed"
	EventObjectiveComplete     = "objective-complete"
	EventNetworkConnected      = "network-connected"
	EventNetworkScanComplete   = "network-scan-complete"
	EventFileSystemConnected   = "file-system-connected"
	EventFileOperationComplete = "file-operation-complete"
	EventCredentialRegistered  = "credential-registered"
	EventSecureDeleteComplete  = "secure-delete-complete"
	EventMissionComplete       = "mission-complete"
)

// Bus event names produced by the core.
const (
	EventMissionAvailable    = "mission-available"
	EventStoryEventTriggered = "story-event-triggered"
	EventScriptedEventStart  = "scripted-event-start"
	EventSendMissionIntro    = "send-mission-intro-message"
)
