// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package storage

import (
	"time"

	"github.com/tomtom215/iotpipeline/internal/domain"
)

// Tier names a layer of the data lake.
type Tier string

const (
	TierBronze Tier = "bronze"
	TierSilver Tier = "silver"
	TierGold   Tier = "gold"
)

// ReadingPath returns the object key of a reading in tier:
//
//	{tier}/{yyyy}/{MM}/{dd}/{HH}/{deviceId}_{yyyyMMddHHmmss}.json
//
// The path is derived from the device timestamp in UTC, so it depends only on
// the reading.
func ReadingPath(tier Tier, deviceID domain.DeviceID, ts time.Time) string {
	ts = ts.UTC()
	return string(tier) + "/" + ts.Format("2006/01/02/15") + "/" +
		string(deviceID) + "_" + ts.Format("20060102150405") + ".json"
}

// GoldPath returns the object key of the hourly aggregate for hour:
//
//	gold/{yyyy}/{MM}/{dd}/hourly_aggregates_{HH}.json
func GoldPath(hour time.Time) string {
	hour = hour.UTC()
	return string(TierGold) + "/" + hour.Format("2006/01/02") + "/hourly_aggregates_" + hour.Format("15") + ".json"
}
