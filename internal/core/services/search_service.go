package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jupiterclapton/relation-service/internal/core/domain"
	"github.com/jupiterclapton/relation-service/internal/core/ports"
)

// Searcher est l'index de recherche d'UNE session : il coalesce les frappes
// clavier (debounce), ne dispatch que la requête "posée", et ignore toute
// réponse dont le numéro de séquence n'est pas le plus haut déjà observé
// (les complétions réseau peuvent arriver dans le désordre).
type Searcher struct {
	backend  ports.UserSearcher
	debounce time.Duration
	timeout  time.Duration

	mu         sync.Mutex
	timer      *time.Timer
	cancel     context.CancelFunc // annule le dispatch en vol
	gen        uint64             // incrémenté à chaque frappe ; invalide les timers déjà tirés
	nextSeq    uint64             // séquence strictement croissante des dispatchs
	appliedSeq uint64             // plus haute séquence déjà appliquée à la vue
	state      domain.DiscoveryState
	results    []*domain.User
	failed     bool
}

func NewSearcher(backend ports.UserSearcher, debounce, timeout time.Duration) *Searcher {
	return &Searcher{
		backend:  backend,
		debounce: debounce,
		timeout:  timeout,
		state:    domain.StateIdle,
	}
}

// SetQuery ingère une frappe. Une requête vide n'est JAMAIS dispatchée :
// le contrat est "aucune recherche en vol, montrer le listing complet",
// pas "chercher la chaîne vide".
func (s *Searcher) SetQuery(query string) {
	query = strings.TrimSpace(query)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Stop ne suffit pas : un timer dont le callback a DÉJÀ tiré mais attend
	// le mutex passerait quand même. La génération capturée par le closure
	// rend ce dispatch tardif caduc.
	s.gen++

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	if query == "" {
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		s.state = domain.StateIdle
		s.results = nil
		s.failed = false
		return
	}

	s.state = domain.StateDebouncing
	gen := s.gen
	s.timer = time.AfterFunc(s.debounce, func() {
		s.dispatch(query, gen)
	})
}

// dispatch émet la requête posée vers le backend. Entrer en Searching rend
// obsolète tout dispatch précédent encore en vol (annulation active).
func (s *Searcher) dispatch(query string, gen uint64) {
	s.mu.Lock()

	// Une frappe (ou un clear) est passée entre le tir du timer et ici :
	// cette requête n'est plus celle de la session, on ne dispatch pas.
	if gen != s.gen {
		s.mu.Unlock()
		return
	}

	if s.cancel != nil {
		s.cancel()
	}

	s.nextSeq++
	seq := s.nextSeq

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	s.cancel = cancel
	s.state = domain.StateSearching
	s.mu.Unlock()

	go func() {
		defer cancel()
		users, err := s.backend.Search(ctx, query)
		s.apply(seq, users, err)
	}()
}

// apply n'accepte une réponse que si sa séquence est la plus haute observée.
// Une réponse périmée est silencieusement jetée.
func (s *Searcher) apply(seq uint64, users []*domain.User, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq <= s.appliedSeq {
		return
	}

	if errors.Is(err, context.Canceled) {
		// Supplanté par une frappe plus récente : rien à appliquer.
		return
	}

	s.appliedSeq = seq

	if err != nil {
		// Dégradation : zéro résultat + flag, pour que l'UI distingue
		// "rien ne matche" de "la recherche a échoué".
		slog.Warn("search dispatch failed", "seq", seq, "error", err)
		s.results = nil
		s.failed = true
	} else {
		s.results = users
		s.failed = false
	}

	// On ne passe en Results que si aucun dispatch plus récent n'est en vol.
	if seq == s.nextSeq {
		s.state = domain.StateResults
	}
}

// View retourne l'état courant de la session de recherche.
func (s *Searcher) View() (domain.DiscoveryState, []*domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.User, len(s.results))
	copy(out, s.results)
	return s.state, out, s.failed
}

// Close arrête le timer et annule tout dispatch en vol.
func (s *Searcher) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
