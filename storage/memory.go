package storage

import (
	"sync"

	"delyzer.dev/delyzer/model"
)

// In memory implementation of Storage below

type MemoryStorage struct {
	mutex      sync.RWMutex
	departures []model.Departure
	nextID     int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		departures: []model.Departure{},
		nextID:     1,
	}
}

func (s *MemoryStorage) WriteDepartures(departures []*model.Departure) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, d := range departures {
		d.ID = s.nextID
		d.ObservedAt = model.ObservationTime(d.ObservedAt)
		s.nextID++
		s.departures = append(s.departures, *d)
	}

	return nil
}

func (s *MemoryStorage) ListDepartures(filter DepartureFilter) ([]*model.Departure, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	departures := []*model.Departure{}
	for i := range s.departures {
		if !filter.Matches(&s.departures[i]) {
			continue
		}
		d := s.departures[i]
		departures = append(departures, &d)
	}

	return departures, nil
}

func (s *MemoryStorage) GetDeparture(id int64) (*model.Departure, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for i := range s.departures {
		if s.departures[i].ID == id {
			d := s.departures[i]
			return &d, nil
		}
	}

	return nil, ErrNotFound
}

func (s *MemoryStorage) ClearDepartures() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.departures = []model.Departure{}
	return nil
}

func (s *MemoryStorage) Ping() error {
	return nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
