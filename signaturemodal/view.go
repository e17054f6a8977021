package signaturemodal

import "docsign/signature"

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case !m.isOpen:
		return StateClosed
	case m.showForm:
		return StateNewRequestForm
	default:
		return StateListView
	}
}

func (m *Manager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isOpen
}

func (m *Manager) IsLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading > 0
}

func (m *Manager) ShowingNewForm() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.showForm
}

// Requests returns the current snapshot decorated for display.
func (m *Manager) Requests() []signature.RequestView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dates.Views(m.existing)
}

func (m *Manager) HasExistingRequests() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.existing) > 0
}

// CanCreateNew is false while any request for the document is active.
func (m *Manager) CanCreateNew() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !signature.HasActive(m.existing)
}

func (m *Manager) ModalTitle() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := m.documentNameLocked()
	if name == "" {
		name = "Document"
	}
	return "Request Signature: " + name
}

func (m *Manager) DisableCreateButton() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.form.SignerName == "" || m.form.SignerEmail == "" || m.loading > 0
}

func (m *Manager) Form() Form {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.form
}

// FieldErrors returns the inline messages from the last submit attempt.
func (m *Manager) FieldErrors() map[Field]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Field]string, len(m.fieldErrors))
	for k, v := range m.fieldErrors {
		out[k] = v
	}
	return out
}
