package service

import "Preda/internal/domain/models"

// InflectionSubscriber receives every inflection a monitor detects.
// Notify runs synchronously on the caller of Monitor.Update.
type InflectionSubscriber interface {
	Notify(inflection models.BeliefInflection)
}

// SubscriberFunc adapts a plain function to InflectionSubscriber.
type SubscriberFunc func(models.BeliefInflection)

func (f SubscriberFunc) Notify(inflection models.BeliefInflection) { f(inflection) }
