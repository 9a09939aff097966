package billing

import (
	"sort"
	"time"

	"github.com/coverpilothq/coverpilot/app/models"
	"gorm.io/gorm"
)

// fakeRepository is an in-memory Repository used across the package tests.
type fakeRepository struct {
	subs     []*models.Subscription
	events   []*models.WebhookEvent
	settings map[uint]*models.UserSettings

	nextSubID   uint
	nextEventID uint

	createEventErr error
	lookupErr      error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{settings: map[uint]*models.UserSettings{}}
}

func (f *fakeRepository) GetSubscriptionByProviderID(provider, providerSubscriptionID string) (*models.Subscription, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, s := range f.subs {
		if s.Provider == provider && s.ProviderSubscriptionID == providerSubscriptionID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) UpsertSubscription(sub *models.Subscription) error {
	for _, s := range f.subs {
		if s.Provider == sub.Provider && s.ProviderSubscriptionID == sub.ProviderSubscriptionID {
			id, created := s.ID, s.CreatedAt
			*s = *sub
			s.ID = id
			s.CreatedAt = created
			s.UpdatedAt = time.Now()
			sub.ID = id
			return nil
		}
	}
	f.nextSubID++
	sub.ID = f.nextSubID
	sub.CreatedAt = time.Now()
	cp := *sub
	f.subs = append(f.subs, &cp)
	return nil
}

func (f *fakeRepository) SaveSubscription(sub *models.Subscription) error {
	for _, s := range f.subs {
		if s.ID == sub.ID {
			*s = *sub
			s.UpdatedAt = time.Now()
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepository) ListSubscriptionsByUser(userID uint) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, s := range f.subs {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeRepository) GetLatestActiveSubscriptionByUser(userID uint) (*models.Subscription, error) {
	var active []*models.Subscription
	for _, s := range f.subs {
		if s.UserID == userID && s.Status == models.SubscriptionStatusActive {
			active = append(active, s)
		}
	}
	if len(active) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	sort.Slice(active, func(i, j int) bool {
		a, b := active[i].StartedAt, active[j].StartedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	cp := *active[0]
	return &cp, nil
}

func (f *fakeRepository) CreateWebhookEvent(event *models.WebhookEvent) error {
	if f.createEventErr != nil {
		return f.createEventErr
	}
	f.nextEventID++
	event.ID = f.nextEventID
	event.CreatedAt = time.Now()
	cp := *event
	f.events = append(f.events, &cp)
	return nil
}

func (f *fakeRepository) MarkWebhookProcessed(id uint, processingError string) error {
	for _, e := range f.events {
		if e.ID == id {
			now := time.Now()
			e.ProcessedAt = &now
			e.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepository) GetOrCreateUserSettings(userID uint) (*models.UserSettings, error) {
	if us, ok := f.settings[userID]; ok {
		return us, nil
	}
	us := &models.UserSettings{ID: uint(len(f.settings) + 1), UserID: userID, Plan: "free"}
	f.settings[userID] = us
	return us, nil
}

func (f *fakeRepository) SaveUserSettings(us *models.UserSettings) error {
	f.settings[us.UserID] = us
	return nil
}
