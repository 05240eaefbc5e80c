package prompt

import "github.com/voxhire/voxhire/internal/persona"

// Identity is a resolved interviewer identity: a concrete display name and
// the per-language voice map it carries.
type Identity struct {
	Name  string
	Voice map[string]string
}

// ResolveIdentity picks the identity a session presents as. Personas without
// an identity pool use their legacy root name and voice. Otherwise the
// session ID hashes to a stable pool index, so a session always talks to the
// same "person"; an empty session ID picks at random.
func ResolveIdentity(p *persona.Persona, sessionID, language string) Identity {
	if len(p.Identities) == 0 {
		name := p.Name.Resolve(language)
		if name == "" {
			name = "Interviewer"
		}
		return Identity{Name: name, Voice: p.Voice}
	}

	idx := hashIndex(sessionID, len(p.Identities))
	if sessionID == "" {
		idx = randIndex(len(p.Identities))
	}
	id := p.Identities[idx]

	name := id.Name.Resolve(language)
	if name == "" {
		name = "Interviewer"
	}
	return Identity{Name: name, Voice: id.Voice}
}

// VoiceID returns the identity's voice for language, falling back to the
// English voice.
func (id Identity) VoiceID(language string) string {
	if v, ok := id.Voice[language]; ok {
		return v
	}
	return id.Voice["en"]
}
