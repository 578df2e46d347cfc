// SPDX-License-Identifier: MIT

// Package telemetry provides OpenTelemetry tracing utilities for the controller.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"
	HTTPUserAgentKey  = "http.user_agent"

	// Scan attributes
	ScanSourceKey   = "scan.source"
	ScanKindKey     = "scan.kind"
	ScanFilepathKey = "scan.filepath"

	// Transcoding attributes
	TranscodeCodecKey       = "transcode.codec"
	TranscodeInputCodecKey  = "transcode.input_codec"
	TranscodeOutputCodecKey = "transcode.output_codec"
	TranscodeBitrateKey     = "transcode.bitrate"
	TranscodeResolutionKey  = "transcode.resolution"
	TranscodeDeviceKey      = "transcode.device"
	TranscodeGPUEnabledKey  = "transcode.gpu_enabled"

	// Provider call attributes (Plex/Sonarr/Radarr/Lidarr)
	ProviderNameKey       = "provider.name"
	ProviderOperationKey  = "provider.operation"
	ProviderItemCountKey  = "provider.item_count"
	ProviderRetriesKey    = "provider.retries"

	// Job attributes
	JobTypeKey     = "job.type"
	JobStatusKey   = "job.status"
	JobDurationKey = "job.duration_ms"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// ScanAttributes creates scan-related span attributes.
func ScanAttributes(source, kind, filepath string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if source != "" {
		attrs = append(attrs, attribute.String(ScanSourceKey, source))
	}
	if kind != "" {
		attrs = append(attrs, attribute.String(ScanKindKey, kind))
	}
	if filepath != "" {
		attrs = append(attrs, attribute.String(ScanFilepathKey, filepath))
	}
	return attrs
}

// TranscodeAttributes creates transcoding-related span attributes.
func TranscodeAttributes(inputCodec, outputCodec, device string, bitrate int, gpuEnabled bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(TranscodeInputCodecKey, inputCodec),
		attribute.String(TranscodeOutputCodecKey, outputCodec),
		attribute.String(TranscodeDeviceKey, device),
		attribute.Int(TranscodeBitrateKey, bitrate),
		attribute.Bool(TranscodeGPUEnabledKey, gpuEnabled),
	}
}

// ProviderAttributes creates provider-call-related span attributes.
func ProviderAttributes(provider, operation string, itemCount, retries int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ProviderNameKey, provider),
		attribute.String(ProviderOperationKey, operation),
		attribute.Int(ProviderItemCountKey, itemCount),
		attribute.Int(ProviderRetriesKey, retries),
	}
}

// JobAttributes creates job-related span attributes.
func JobAttributes(jobType, status string, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobTypeKey, jobType),
		attribute.String(JobStatusKey, status),
		attribute.Int64(JobDurationKey, durationMS),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
