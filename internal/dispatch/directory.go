package dispatch

// Profile is how a driver is presented to passengers.
type Profile struct {
	Name string `json:"name"`
	Car  string `json:"car"`
}

// Directory lists the drivers that receive broadcasts.
type Directory struct {
	IDs      []int64
	Profiles map[int64]Profile
}

// Has reports whether id is a registered driver.
func (d Directory) Has(id int64) bool {
	for _, v := range d.IDs {
		if v == id {
			return true
		}
	}
	return false
}

// Profile returns the driver's profile with "Driver" and "Car" as defaults.
func (d Directory) Profile(id int64) Profile {
	p := d.Profiles[id]
	if p.Name == "" {
		p.Name = "Driver"
	}
	if p.Car == "" {
		p.Car = "Car"
	}
	return p
}
