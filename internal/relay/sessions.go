package relay

// sessionIndex maps connections to the email they authenticated as and back.
// A connection belongs to at most one email. Only the actor goroutine touches it.
type sessionIndex struct {
	byConn  map[ConnID]string
	byEmail map[string]map[ConnID]struct{}
}

func newSessionIndex() *sessionIndex {
	return &sessionIndex{
		byConn:  make(map[ConnID]string),
		byEmail: make(map[string]map[ConnID]struct{}),
	}
}

func (s *sessionIndex) bind(id ConnID, email string) {
	if cur, ok := s.byConn[id]; ok {
		if cur == email {
			return
		}
		s.remove(id)
	}
	s.byConn[id] = email
	set := s.byEmail[email]
	if set == nil {
		set = make(map[ConnID]struct{})
		s.byEmail[email] = set
	}
	set[id] = struct{}{}
}

func (s *sessionIndex) remove(id ConnID) {
	email, ok := s.byConn[id]
	if !ok {
		return
	}
	delete(s.byConn, id)
	set := s.byEmail[email]
	delete(set, id)
	if len(set) == 0 {
		delete(s.byEmail, email)
	}
}

func (s *sessionIndex) emailOf(id ConnID) (string, bool) {
	email, ok := s.byConn[id]
	return email, ok
}

func (s *sessionIndex) members(email string) map[ConnID]struct{} {
	return s.byEmail[email]
}
