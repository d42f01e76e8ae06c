// Package protocol defines the two logical channels the registry runs over
// the broadcast bus: a data channel carrying full record snapshots after each
// committed write, and a filter channel carrying ephemeral search text.
package protocol

// Channel names are fixed contracts shared by every session of the origin.
const (
	PatientsSyncChannel   = "patients_sync_channel"
	PatientsFilterChannel = "patients_filter_channel"
)

// Envelope event types.
const (
	EventNewPatientRegistered = "New_Patient_Registered"
	EventFilterPatients       = "filter_patients"
)
