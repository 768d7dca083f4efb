package config

type RoutesConfig interface {
	GetLoginPath() string
	GetDefaultLandingPath() string
	GetProviderLandingPath() string
}

type Routes struct{}

var _ RoutesConfig = Routes{}

func (Routes) GetLoginPath() string {
	return GetEnv("ROUTE_LOGIN", "/login")
}

func (Routes) GetDefaultLandingPath() string {
	return GetEnv("ROUTE_DEFAULT_LANDING", "/dashboard")
}

func (Routes) GetProviderLandingPath() string {
	return GetEnv("ROUTE_PROVIDER_LANDING", "/provider/dashboard")
}
