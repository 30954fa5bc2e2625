package realtime

import "strings"

// Topics are the document key paths of the observable units. Writers publish
// the path of what they changed; observers subscribe to the path they render.

func SessionTopic(sessionID string) string {
	return "sessions/" + sessionID
}

func PatientTopic(sessionID, patientID string) string {
	return SessionTopic(sessionID) + "/patients/" + patientID
}

func ActionsTopic(sessionID, patientID string) string {
	return PatientTopic(sessionID, patientID) + "/actions"
}

// InSession reports whether topic addresses a document of the session.
func InSession(topic, sessionID string) bool {
	root := SessionTopic(sessionID)
	return topic == root || strings.HasPrefix(topic, root+"/")
}
