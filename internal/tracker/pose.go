package tracker

import (
	"wisefido-vision/internal/models"
)

// IsPersonOnGround 倒地姿态启发式判断
// 取躯干4个关键点（双肩、双髋）中置信度超过阈值的点，至少需要2个，
// 否则视为无法判断（返回false）。有效点的平均Y落在帧高的
// groundThresholdPercent 以下（图像坐标系Y向下）即判定为倒地。
func IsPersonOnGround(keypoints []models.Keypoint, frameHeight, groundThresholdPercent, confidenceThreshold float64) bool {
	if len(keypoints) <= models.KeypointRightHip {
		return false
	}

	torso := []models.Keypoint{
		keypoints[models.KeypointLeftShoulder],
		keypoints[models.KeypointRightShoulder],
		keypoints[models.KeypointLeftHip],
		keypoints[models.KeypointRightHip],
	}

	var validY []float64
	for _, kp := range torso {
		if kp.Confidence > confidenceThreshold {
			validY = append(validY, kp.Y)
		}
	}

	// 少于2个有效点无法做出合理判断
	if len(validY) < 2 {
		return false
	}

	var sum float64
	for _, y := range validY {
		sum += y
	}
	avgTorsoY := sum / float64(len(validY))

	groundThresholdPixels := frameHeight * groundThresholdPercent
	return avgTorsoY > groundThresholdPixels
}
