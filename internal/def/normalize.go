package def

// Normalize applies registration-time fixups to a mission definition.
// It mutates the definition in place and is idempotent.
//
// Fixups:
//   - A mission with objectives but no verification objective gets a
//     terminal verification objective appended.
//   - A mission with simulated networks but no authored briefing
//     attachments gets credential attachments derived from the networks
//     that carry credentials.
func Normalize(m *Mission) {
	if len(m.Objectives) > 0 && !m.HasVerification() {
		m.Objectives = append(m.Objectives, Objective{
			ID:          m.ID + "-verify",
			Type:        ObjectiveVerification,
			Description: "Verify all objectives with the client",
		})
	}

	if len(m.Attachments) == 0 {
		for _, n := range m.Networks {
			if n.Username == "" && n.Password == "" {
				continue
			}
			m.Attachments = append(m.Attachments, Attachment{
				NetworkID: n.ID,
				Username:  n.Username,
				Password:  n.Password,
			})
		}
	}
}
