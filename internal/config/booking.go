package config

import "time"

// BookingConfig tunes the booking engine.
type BookingConfig struct {
    // DaysAhead is the inventory generation horizon (INVENTORY_DAYS_AHEAD).
    DaysAhead int
    // GenerateOnStartup fills missing inventory for every room type when
    // the server starts (INVENTORY_GENERATE_ON_STARTUP).
    GenerateOnStartup bool
    // TxTimeout bounds a whole booking operation, lock waits included
    // (BOOKING_TX_TIMEOUT).
    TxTimeout time.Duration
    // LockWait bounds a single row lock wait in the memory store
    // (LOCK_WAIT_TIMEOUT).  MySQL uses innodb_lock_wait_timeout.
    LockWait time.Duration
}

// LoadBookingConfig reads the booking engine settings.
func LoadBookingConfig() BookingConfig {
    cfg := BookingConfig{
        DaysAhead:         envInt("INVENTORY_DAYS_AHEAD", 90),
        GenerateOnStartup: envBool("INVENTORY_GENERATE_ON_STARTUP", true),
        TxTimeout:         envDur("BOOKING_TX_TIMEOUT", 10*time.Second),
        LockWait:          envDur("LOCK_WAIT_TIMEOUT", 5*time.Second),
    }
    if cfg.DaysAhead < 1 {
        cfg.DaysAhead = 90
    }
    return cfg
}
