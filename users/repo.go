package users

type ProfileRepo interface {
	Upsert(profile *Profile) error
	Delete(id string) error
	GetByID(id string) (*Profile, error)
}
