// Package telegram relays story media to a Telegram channel through the
// Bot API. Uploads are multipart sendPhoto/sendVideo calls; failures are
// typed as transmission or rate-limit errors so the story stays unseen and
// is retried on the next cycle.
package telegram
