// Package scheduler fires round batches. A cron driver calls Trigger.Tick
// once per minute; the trigger takes the minute lock, selects the batches due
// at that minute and publishes their dispatch plans. The package also holds
// the batch registry and the weekly maintenance sweep.
package scheduler
