package dataset

// DetectionNameIgnore marks categories that never contribute ground truth.
const DetectionNameIgnore = "ignore"

// DetectionNameFromGeneral normalizes the general category taxonomy to the
// detection class names. Categories mapped to "ignore" are dropped from
// ground truth regardless of the configured class list.
var DetectionNameFromGeneral = map[string]string{
	"human.pedestrian.adult":              "pedestrian",
	"human.pedestrian.child":              "pedestrian",
	"human.pedestrian.wheelchair":         DetectionNameIgnore,
	"human.pedestrian.stroller":           DetectionNameIgnore,
	"human.pedestrian.personal_mobility":  DetectionNameIgnore,
	"human.pedestrian.police_officer":     "pedestrian",
	"human.pedestrian.construction_worker": "pedestrian",
	"animal":                              DetectionNameIgnore,
	"vehicle.car":                         "car",
	"vehicle.motorcycle":                  "motorcycle",
	"vehicle.bicycle":                     "bicycle",
	"vehicle.bus.bendy":                   "bus",
	"vehicle.bus.rigid":                   "bus",
	"vehicle.truck":                       "truck",
	"vehicle.construction":                "construction_vehicle",
	"vehicle.emergency.ambulance":         DetectionNameIgnore,
	"vehicle.emergency.police":            DetectionNameIgnore,
	"vehicle.trailer":                     "trailer",
	"movable_object.barrier":              "barrier",
	"movable_object.trafficcone":          "traffic_cone",
	"movable_object.pushable_pullable":    DetectionNameIgnore,
	"movable_object.debris":               DetectionNameIgnore,
	"static_object.bicycle_rack":          DetectionNameIgnore,
}

// detectionName maps a raw category, falling back to the raw name itself so
// that pre-normalized indexes keep working.
func detectionName(category string) string {
	if mapped, ok := DetectionNameFromGeneral[category]; ok {
		return mapped
	}
	return category
}
