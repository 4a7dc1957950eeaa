// Package domain models air-quality readings served by the monitoring REST API
// and their enrichment with EPA Air Quality Index values.
//
// # Data Sources
//
// The monitoring API exposes two particulate collections:
//
//	aqicn   outdoor station readings imported from the AQICN feed
//	        {"id": 7, "ts": "2025-03-01 14:00:00", "pm25": 15.2, "pm10": 22.0, "aqi_score": 57}
//	sensor  indoor sensor readings
//	        {"id": 3, "timestamp": "2025-03-01T14:05:00", "pm25": 9, "pm10": 14,
//	         "temperature": 21.4, "humidity": 40.2, "latitude": 59.43, "longitude": 24.75}
//
// Raw readings reach the service as Kafka messages whose value is one of the
// records above. The "source" message header names the collection; messages
// without it are treated as aqicn.
//
// # Timestamps
//
// aqicn records carry "ts", sensor records carry "timestamp". Both are UTC
// and appear as RFC 3339, "2006-01-02 15:04:05" or "2006-01-02T15:04:05".
// A bare date is accepted as midnight. When the field is empty or does not
// parse, the Kafka message timestamp is used instead.
//
// # Missing Concentrations
//
// Concentrations are nullable. A reading without PM2.5 is converted as
// 0 µg/m³ and flagged with PM25Missing so consumers can render a placeholder rather
// than a misleading Good. A reading without PM10 gets no PM10 sub-index.
// Negative or non-finite concentrations are rejected with
// [aqi.ErrInvalidInput].
//
// # Overall AQI
//
// The overall AQI is the highest pollutant sub-index, as EPA reporting does.
// The pollutant that produced it is the dominant pollutant; PM2.5 wins ties.
// When the station supplied its own "aqi_score", ReportedDelta records
// computed minus reported so drift between the two is visible downstream.
//
// # ID Generation
//
// Reading IDs are deterministic SHA-256 hashes of
// source|source id|timestamp|pm25|pm10, which makes replays idempotent for
// downstream upserts. See [generateID].
package domain
