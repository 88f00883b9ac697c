package rosbag

import (
	"time"
)

// extractTime decodes a ROS time: uint32 secs followed by uint32 nsecs.
func extractTime(raw []byte) time.Time {
	sec := endian.Uint32(raw)
	nsec := endian.Uint32(raw[4:])
	return time.Unix(int64(sec), int64(nsec))
}

// extractDuration decodes a ROS duration: int32 secs followed by int32 nsecs.
func extractDuration(raw []byte) time.Duration {
	sec := int32(endian.Uint32(raw))
	nsec := int32(endian.Uint32(raw[4:]))
	return time.Duration(sec)*time.Second + time.Duration(nsec)
}
